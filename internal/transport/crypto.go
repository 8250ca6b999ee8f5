// ABOUTME: End-to-end encryption setup for the Matrix transport
// ABOUTME: Wraps mautrix cryptohelper with device-mismatch recovery and recovery-key verification

package transport

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/cryptohelper"
)

// CryptoManager owns the Matrix crypto helper for one bot account.
type CryptoManager struct {
	helper *cryptohelper.CryptoHelper
	logger *slog.Logger
}

// SetupCrypto enables E2EE on client. Keys live in an SQLite database under
// dataDir named after the user. When recoveryKey is set the device is also
// verified for cross-signing; a failed verification is logged, not fatal.
func SetupCrypto(ctx context.Context, client *mautrix.Client, userID, recoveryKey, dataDir string, logger *slog.Logger) (*CryptoManager, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, fmt.Sprintf("helpdesk-crypto-%s.db", slugify(userID)))
	logger.Info("setting up encryption", "db", dbPath)

	helper, err := initCryptoHelper(ctx, client, deriveStoreKey(userID), dbPath, logger)
	if err != nil {
		return nil, err
	}
	client.Crypto = helper

	cm := &CryptoManager{helper: helper, logger: logger}

	if recoveryKey == "" {
		logger.Info("encryption initialized (no recovery key - cross-signing disabled)")
		return cm, nil
	}
	if err := cm.verifyWithRecoveryKey(ctx, recoveryKey); err != nil {
		logger.Warn("failed to verify with recovery key", "error", err)
		logger.Info("encryption enabled without cross-signing verification")
	} else {
		logger.Info("encryption initialized with cross-signing verification")
	}
	return cm, nil
}

func (cm *CryptoManager) verifyWithRecoveryKey(ctx context.Context, recoveryKey string) error {
	machine := cm.helper.Machine()
	if machine == nil {
		return fmt.Errorf("crypto machine not initialized")
	}
	if err := machine.VerifyWithRecoveryKey(ctx, recoveryKey); err != nil {
		return fmt.Errorf("recovery key verification failed: %w", err)
	}
	cm.logger.Info("device verified with recovery key")
	return nil
}

// Close releases the crypto store.
func (cm *CryptoManager) Close() error {
	if cm == nil || cm.helper == nil {
		return nil
	}
	return cm.helper.Close()
}

// initCryptoHelper resets the crypto store first if it belongs to a
// different device, since a fresh login gets a new device id.
func initCryptoHelper(ctx context.Context, client *mautrix.Client, storeKey []byte, dbPath string, logger *slog.Logger) (*cryptohelper.CryptoHelper, error) {
	if needsReset, err := checkDeviceIDMismatch(dbPath, client.DeviceID.String()); err != nil {
		logger.Debug("could not check device ID", "error", err)
	} else if needsReset {
		logger.Warn("device ID mismatch detected, resetting crypto database")
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing old crypto database: %w", err)
		}
		_ = os.Remove(dbPath + "-wal")
		_ = os.Remove(dbPath + "-shm")
	}

	helper, err := cryptohelper.NewCryptoHelper(client, storeKey, dbPath)
	if err != nil {
		return nil, fmt.Errorf("creating crypto helper: %w", err)
	}
	if err := helper.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing crypto helper: %w", err)
	}
	return helper, nil
}

// checkDeviceIDMismatch reports whether an existing crypto database was
// created for a different device.
func checkDeviceIDMismatch(dbPath, currentDeviceID string) (bool, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return false, nil
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return false, err
	}
	defer db.Close()

	var storedDeviceID string
	err = db.QueryRow("SELECT device_id FROM crypto_account LIMIT 1").Scan(&storedDeviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return storedDeviceID != currentDeviceID, nil
}

// slugify turns a Matrix user id into a file-name fragment,
// e.g. @helpdesk:matrix.org -> helpdesk_matrix.org.
func slugify(userID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ':':
			return '_'
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(".-_", r)):
			return r
		}
		return -1
	}, strings.TrimPrefix(userID, "@"))
}

// deriveStoreKey derives a per-user 32-byte store key.
func deriveStoreKey(userID string) []byte {
	h := sha256.Sum256([]byte("coven-helpdesk-crypto:" + userID))
	return h[:]
}

// Package form drives multi-turn input collection.
//
// A Form is a named, ordered list of fields created from a registered
// template. Engine.RequestField moves a form through
//
//	NotStarted → Awaiting(field1) → … → Awaiting(fieldN) → Filled
//
// one field per user turn, with a side transition to Cancelled when the
// user replies with the quit token while a field is awaiting. Filled and
// Cancelled are terminal; a new instance must be created to start over.
//
// Typical handler usage:
//
//	for _, field := range f.Fields() {
//	    step, err := engine.RequestField(ctx, f, field, turn.Message, promptFor(field))
//	    if err != nil || step == form.StepCancelled {
//	        ...
//	    }
//	}
//	if f.Filled() {
//	    // run the business action
//	}
package form

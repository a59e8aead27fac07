// Package builtins provides the built-in task tools exposed to connected peers.
//
// # Tool Pack
//
// Tasks Pack (builtin:tasks):
//
//   - list_tasks: List tasks, filtered by status and/or priority, soonest due first
//   - add_task: Create a task; "due" is free text such as "tomorrow 5pm"
//   - update_task: Change only the supplied fields of a task
//   - delete_task: Delete a task and report how many rows changed
//
// Tool names are part of the wire contract and must not change.
//
// # Due Dates
//
// Due text is resolved by a duedate.Resolver relative to the current time.
// Text that cannot be resolved stores a null due date rather than failing
// the call. "due_date" is accepted as an alias for "due".
//
// # Errors
//
// update_task on an unknown id returns an error wrapping store.ErrNotFound
// and performs no mutation. delete_task on an unknown id is not an error; it
// reports zero changes.
package builtins

// internal/jobid/doc.go

/*
Package jobid provides the generation-checked handle used to refer to a job
held by the scheduler.

A handle pairs a slot index with the generation that occupied the slot when the
handle was issued. Its canonical text form is `job[<index>#<generation>]`, and
the distinguished void handle is written `job[void]`.
*/
package jobid

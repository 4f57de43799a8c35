// Package fragment consumes the model's streaming output, assembles partial
// fragment artifacts, maintains the conversation turn, and drives sandbox
// provisioning once a generation completes.
package fragment

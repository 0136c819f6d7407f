// Package drift detects schema drift on incoming source rows and routes
// repair proposals by confidence: high-confidence proposals auto-apply,
// the middle band opens a time-boxed human review, and low confidence is
// rejected outright. Review windows that expire undecided reject; an
// unreviewed guess never becomes an active mapping.
package drift

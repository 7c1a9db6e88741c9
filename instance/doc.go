// Package instance defines the JobInstance entity and its store contract.
//
// A JobInstance is the identity of a logical job run: a job name plus a key
// derived from the identifying parameters. The pair is unique across the
// repository. Instances are created once and never mutated or deleted.
package instance

// Package execution defines the JobExecution entity and its store
// contract. A JobExecution is one attempt to run a job instance. Its status
// moves forward through the graph in package status and is frozen once
// terminal.
package execution

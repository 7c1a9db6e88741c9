// Package step defines the StepExecution entity and its store contract.
package step

package redis

import (
	"strconv"
	"strings"

	"github.com/xraph/jobrepo/schema"
	"github.com/xraph/jobrepo/sequence"
)

// Redis key naming conventions for jobrepo data. Every key starts with the
// store prefix, "{jobrepo}:" unless WithPrefix overrides it. The prefix is
// a Redis Cluster hash tag, so every key of a store hashes to one slot and
// the multi-key scripts run on a cluster without CROSSSLOT errors.

const defaultPrefix = "{jobrepo}:"

// hashTagged returns prefix unchanged when it already carries a non-empty
// hash tag, otherwise it wraps the prefix in one: "app:" → "{app}:".
func hashTagged(prefix string) string {
	if open := strings.IndexByte(prefix, '{'); open >= 0 {
		if end := strings.IndexByte(prefix[open+1:], '}'); end > 0 {
			return prefix
		}
	}
	name := strings.TrimSuffix(prefix, ":")
	if name == "" {
		return defaultPrefix
	}
	return "{" + name + "}:"
}

// ── Sequence keys ──

// sequenceKey returns the counter key: {p}seq:{kind}
func (s *Store) sequenceKey(kind sequence.Kind) string {
	return s.prefix + "seq:" + string(kind)
}

// ── Instance keys ──

// instanceKey returns the Hash key for an instance: {p}instance:{id}
func (s *Store) instanceKey(id int64) string {
	return s.prefix + "instance:" + strconv.FormatInt(id, 10)
}

// instanceNamesKey maps "jobName\x00jobKey" to the instance ID. It carries
// the uniqueness constraint.
func (s *Store) instanceNamesKey() string { return s.prefix + "instance_keys" }

// jobInstancesKey returns the Sorted Set of instance IDs for a job name.
func (s *Store) jobInstancesKey(jobName string) string {
	return s.prefix + "job_instances:" + jobName
}

// jobNamesKey is the Set of distinct job names.
func (s *Store) jobNamesKey() string { return s.prefix + "job_names" }

// ── Execution keys ──

// executionKey returns the Hash key for an execution: {p}execution:{id}
func (s *Store) executionKey(id int64) string {
	return s.prefix + "execution:" + strconv.FormatInt(id, 10)
}

// instanceExecutionsKey returns the Sorted Set of execution IDs of an instance.
func (s *Store) instanceExecutionsKey(instanceID int64) string {
	return s.prefix + "instance_executions:" + strconv.FormatInt(instanceID, 10)
}

// ── Step keys ──

// stepKey returns the Hash key for a step execution: {p}step:{id}
func (s *Store) stepKey(id int64) string {
	return s.prefix + "step:" + strconv.FormatInt(id, 10)
}

// executionStepsKey returns the Sorted Set of step IDs of a job execution.
func (s *Store) executionStepsKey(executionID int64) string {
	return s.prefix + "execution_steps:" + strconv.FormatInt(executionID, 10)
}

// ── Index keys ──

// indexesKey returns the Hash of declared index names to key specs for a
// collection.
func (s *Store) indexesKey(c schema.Collection) string {
	return s.prefix + "indexes:" + string(c)
}

func uniqueField(jobName, jobKey string) string {
	return jobName + "\x00" + jobKey
}

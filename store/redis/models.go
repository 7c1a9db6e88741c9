package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/jobkey"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// Hash field names follow the collection document layout.
const (
	fieldID             = "id"
	fieldJobName        = "jobName"
	fieldJobKey         = "jobKey"
	fieldJobInstanceID  = "jobInstanceId"
	fieldJobExecutionID = "jobExecutionId"
	fieldStepName       = "stepName"
	fieldStatus         = "status"
	fieldStartTime      = "startTime"
	fieldEndTime        = "endTime"
	fieldExitCode       = "exitCode"
	fieldExitMessage    = "exitMessage"
	fieldParameters     = "parameters"
	fieldCreateTime     = "createTime"
	fieldLastUpdated    = "lastUpdated"

	fieldReadCount        = "readCount"
	fieldWriteCount       = "writeCount"
	fieldFilterCount      = "filterCount"
	fieldCommitCount      = "commitCount"
	fieldRollbackCount    = "rollbackCount"
	fieldReadSkipCount    = "readSkipCount"
	fieldProcessSkipCount = "processSkipCount"
	fieldWriteSkipCount   = "writeSkipCount"
)

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
	return t
}

func parseTimePtr(v string) *time.Time {
	if v == "" {
		return nil
	}
	t := parseTime(v)
	return &t
}

func parseID(m map[string]string, field string) (int64, error) {
	v, err := strconv.ParseInt(m[field], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("jobrepo/redis: parse %s: %w", field, err)
	}
	return v, nil
}

// pairsToMap converts a flat HGETALL reply from a script into a map.
func pairsToMap(vals []interface{}) map[string]string {
	m := make(map[string]string, len(vals)/2)
	for i := 0; i+1 < len(vals); i += 2 {
		k, _ := vals[i].(string)   //nolint:errcheck // HGETALL replies are strings
		v, _ := vals[i+1].(string) //nolint:errcheck // HGETALL replies are strings
		m[k] = v
	}
	return m
}

// ── Instance ──

func mapToInstance(m map[string]string) (*instance.JobInstance, error) {
	id, err := parseID(m, fieldID)
	if err != nil {
		return nil, err
	}
	return &instance.JobInstance{
		ID:        id,
		JobName:   m[fieldJobName],
		JobKey:    m[fieldJobKey],
		CreatedAt: parseTime(m[fieldCreateTime]),
	}, nil
}

// ── Execution ──

func executionToMap(e *execution.JobExecution) (map[string]interface{}, error) {
	params, err := jobkey.Encode(e.Parameters)
	if err != nil {
		return nil, err
	}
	m := map[string]interface{}{
		fieldID:            strconv.FormatInt(e.ID, 10),
		fieldJobInstanceID: strconv.FormatInt(e.JobInstanceID, 10),
		fieldStatus:        string(e.Status),
		fieldExitCode:      e.ExitCode,
		fieldExitMessage:   e.ExitMessage,
		fieldParameters:    params,
		fieldCreateTime:    formatTime(e.CreatedAt),
		fieldLastUpdated:   formatTime(e.UpdatedAt),
	}
	if e.StartTime != nil {
		m[fieldStartTime] = formatTime(*e.StartTime)
	}
	if e.EndTime != nil {
		m[fieldEndTime] = formatTime(*e.EndTime)
	}
	return m, nil
}

func mapToExecution(m map[string]string) (*execution.JobExecution, error) {
	id, err := parseID(m, fieldID)
	if err != nil {
		return nil, err
	}
	instanceID, err := parseID(m, fieldJobInstanceID)
	if err != nil {
		return nil, err
	}
	params, err := jobkey.Decode(m[fieldParameters])
	if err != nil {
		return nil, fmt.Errorf("jobrepo/redis: execution %d: %w", id, err)
	}
	return &execution.JobExecution{
		Entity: jobrepo.Entity{
			CreatedAt: parseTime(m[fieldCreateTime]),
			UpdatedAt: parseTime(m[fieldLastUpdated]),
		},
		ID:            id,
		JobInstanceID: instanceID,
		Status:        status.Status(m[fieldStatus]),
		StartTime:     parseTimePtr(m[fieldStartTime]),
		EndTime:       parseTimePtr(m[fieldEndTime]),
		ExitCode:      m[fieldExitCode],
		ExitMessage:   m[fieldExitMessage],
		Parameters:    params,
	}, nil
}

// ── Step ──

func stepToMap(se *step.StepExecution) map[string]interface{} {
	m := map[string]interface{}{
		fieldID:             strconv.FormatInt(se.ID, 10),
		fieldJobExecutionID: strconv.FormatInt(se.JobExecutionID, 10),
		fieldStepName:       se.StepName,
		fieldStatus:         string(se.Status),
		fieldExitCode:       se.ExitCode,
		fieldExitMessage:    se.ExitMessage,
		fieldCreateTime:     formatTime(se.CreatedAt),
		fieldLastUpdated:    formatTime(se.UpdatedAt),
	}
	pairs := countPairs(se.Counts)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i].(string)] = pairs[i+1]
	}
	if se.StartTime != nil {
		m[fieldStartTime] = formatTime(*se.StartTime)
	}
	if se.EndTime != nil {
		m[fieldEndTime] = formatTime(*se.EndTime)
	}
	return m
}

func mapToStep(m map[string]string) (*step.StepExecution, error) {
	id, err := parseID(m, fieldID)
	if err != nil {
		return nil, err
	}
	executionID, err := parseID(m, fieldJobExecutionID)
	if err != nil {
		return nil, err
	}
	counts, err := parseCounts(m)
	if err != nil {
		return nil, err
	}
	return &step.StepExecution{
		Entity: jobrepo.Entity{
			CreatedAt: parseTime(m[fieldCreateTime]),
			UpdatedAt: parseTime(m[fieldLastUpdated]),
		},
		ID:             id,
		JobExecutionID: executionID,
		StepName:       m[fieldStepName],
		Status:         status.Status(m[fieldStatus]),
		StartTime:      parseTimePtr(m[fieldStartTime]),
		EndTime:        parseTimePtr(m[fieldEndTime]),
		ExitCode:       m[fieldExitCode],
		ExitMessage:    m[fieldExitMessage],
		Counts:         counts,
	}, nil
}

// countPairs renders c as field/value pairs in the Hash layout.
func countPairs(c step.Counts) []interface{} {
	return []interface{}{
		fieldReadCount, strconv.FormatInt(c.ReadCount, 10),
		fieldWriteCount, strconv.FormatInt(c.WriteCount, 10),
		fieldFilterCount, strconv.FormatInt(c.FilterCount, 10),
		fieldCommitCount, strconv.FormatInt(c.CommitCount, 10),
		fieldRollbackCount, strconv.FormatInt(c.RollbackCount, 10),
		fieldReadSkipCount, strconv.FormatInt(c.ReadSkipCount, 10),
		fieldProcessSkipCount, strconv.FormatInt(c.ProcessSkipCount, 10),
		fieldWriteSkipCount, strconv.FormatInt(c.WriteSkipCount, 10),
	}
}

// parseCounts reads the counters of a step Hash. Missing fields are zero.
func parseCounts(m map[string]string) (step.Counts, error) {
	var c step.Counts
	for _, f := range []struct {
		name string
		dst  *int64
	}{
		{fieldReadCount, &c.ReadCount},
		{fieldWriteCount, &c.WriteCount},
		{fieldFilterCount, &c.FilterCount},
		{fieldCommitCount, &c.CommitCount},
		{fieldRollbackCount, &c.RollbackCount},
		{fieldReadSkipCount, &c.ReadSkipCount},
		{fieldProcessSkipCount, &c.ProcessSkipCount},
		{fieldWriteSkipCount, &c.WriteSkipCount},
	} {
		v, ok := m[f.name]
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return step.Counts{}, fmt.Errorf("jobrepo/redis: parse %s: %w", f.name, err)
		}
		*f.dst = n
	}
	return c, nil
}

// transitionArgs renders t as the script argument list: expected status
// followed by field/value pairs. Nil timestamps and empty exit fields are
// omitted so stored values survive.
func transitionArgs(t status.Transition) []interface{} {
	args := []interface{}{
		string(t.From),
		fieldStatus, string(t.To),
		fieldLastUpdated, formatTime(t.At),
	}
	if t.StartTime != nil {
		args = append(args, fieldStartTime, formatTime(*t.StartTime))
	}
	if t.EndTime != nil {
		args = append(args, fieldEndTime, formatTime(*t.EndTime))
	}
	if t.ExitCode != "" {
		args = append(args, fieldExitCode, t.ExitCode)
	}
	if t.ExitMessage != "" {
		args = append(args, fieldExitMessage, t.ExitMessage)
	}
	return args
}

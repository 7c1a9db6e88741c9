package instance

import "time"

// JobInstance identifies a logical job run.
type JobInstance struct {
	ID        int64     `json:"id"`
	JobName   string    `json:"job_name"`
	JobKey    string    `json:"job_key"`
	CreatedAt time.Time `json:"created_at"`
}

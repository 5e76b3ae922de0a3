package dto

import "time"

// SchedulerStatusDTO represents the scheduler state in API responses
type SchedulerStatusDTO struct {
	Initialized    bool      `json:"initialized"`
	Running        bool      `json:"running"`
	ActiveCadences []string  `json:"activeCadences"`
	Timezone       string    `json:"timezone"`
	Now            time.Time `json:"now"`
}

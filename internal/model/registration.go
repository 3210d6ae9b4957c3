package model

import "time"

// RegistrationClass is a user-defined label with the samples recorded for it.
type RegistrationClass struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	Samples   []Sample  `json:"samples"`
}

// Ready reports whether the class can be uploaded.
func (c *RegistrationClass) Ready() bool {
	return c.Label != "" && len(c.Samples) > 0
}

// Sample is one recorded frame pending upload.
type Sample struct {
	ID         int64 `json:"id"`
	ClassID    int64 `json:"class_id"`
	FrameSample
	CapturedAt time.Time `json:"captured_at"`
}

package model

// BusinessHours is one weekly opening rule as stored: day 0 is Monday and
// times are local HH:MM:SS strings. Empty times mean the day bound.
type BusinessHours struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	SiteID         string `gorm:"size:64;not null;index"`
	DayOfWeek      int    `gorm:"not null"`
	StartTimeLocal string `gorm:"size:16;not null"`
	EndTimeLocal   string `gorm:"size:16;not null"`
}

// TableName pins the table to the dataset's file name.
func (BusinessHours) TableName() string {
	return "business_hours"
}

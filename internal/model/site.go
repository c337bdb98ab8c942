package model

// Site is a monitored location. Timezone holds an IANA zone name and may be
// empty when the source dataset omits it.
type Site struct {
	ID       string `gorm:"primaryKey;size:64"`
	Timezone string `gorm:"size:64;not null"`
}

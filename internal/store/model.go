package store

import "time"

// keyRow is the GORM model backing the KeyRecord table described in
// spec.md §6.3: one relational table, primary key (flow, host, public_key).
type keyRow struct {
	Flow       string    `gorm:"primaryKey;column:flow;size:255"`
	Host       string    `gorm:"primaryKey;column:host;size:512"`
	PublicKey  string    `gorm:"primaryKey;column:public_key;type:text"`
	Deprecated bool      `gorm:"column:deprecated;not null;default:false;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (keyRow) TableName() string { return "khm_keys" }

func (r keyRow) toRecord() KeyRecord {
	return KeyRecord{
		Flow:       r.Flow,
		Host:       r.Host,
		PublicKey:  r.PublicKey,
		Deprecated: r.Deprecated,
		CreatedAt:  r.CreatedAt.Unix(),
	}
}

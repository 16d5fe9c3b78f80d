package models

// Channel is a guide channel keyed by its canonical id.
type Channel struct {
	ID   string `gorm:"primaryKey;size:255" json:"id"`
	Name string `gorm:"type:text" json:"name"`
	Icon string `gorm:"type:text" json:"icon,omitempty"`
}

// TableName returns the table name for channels.
func (Channel) TableName() string {
	return "channels"
}

// Program is a scheduled programme. Start and end are epoch milliseconds.
// ChannelID is not a database-enforced foreign key.
type Program struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ChannelID   string `gorm:"size:255;index:idx_channel_id" json:"channel_id"`
	Title       string `gorm:"type:text" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Category    string `gorm:"type:text" json:"category"`
	StartTime   int64  `gorm:"index:idx_start_time" json:"start_time"`
	EndTime     int64  `gorm:"index:idx_end_time" json:"end_time"`
}

// TableName returns the table name for programs.
func (Program) TableName() string {
	return "programs"
}

// Metadata is a key/value row.
type Metadata struct {
	Key   string `gorm:"primaryKey;size:191" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

// TableName returns the table name for metadata.
func (Metadata) TableName() string {
	return "metadata"
}

// MetadataLastUpdate holds the epoch milliseconds of the last successful rebuild.
const MetadataLastUpdate = "last_update"

package models

// Tag is a shared interest keyword. Names are unique.
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
}

func (Tag) TableName() string {
	return "tags"
}

// UserTag links a user to one of their interest tags.
type UserTag struct {
	UserID uint `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	TagID  uint `gorm:"primaryKey;autoIncrement:false" json:"tag_id"`
}

func (UserTag) TableName() string {
	return "user_tags"
}

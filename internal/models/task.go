package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Tags is a list of task tags stored as a JSON-encoded column.
type Tags []string

// Value implements driver.Valuer so GORM can persist the slice.
func (t Tags) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements sql.Scanner to read the JSON column back into a slice.
func (t *Tags) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported type %T for tags column", value)
	}
}

// Task represents a single to-do item owned by a user.
// The owner (UserID) is set at creation and never changes afterwards.
type Task struct {
	ID          string       `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Title       string       `json:"title" gorm:"type:varchar(100)" validate:"required,max=100"`
	Description string       `json:"description" validate:"required"`
	Tags        Tags         `json:"tags" gorm:"type:text" validate:"required,min=1,dive,oneof=work personal shopping health finance education other"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	Priority    string       `json:"priority" gorm:"type:varchar(10)" validate:"omitempty,oneof=low medium high"`
	IsCompleted bool         `json:"isCompleted"`
	UserID      string       `json:"user" gorm:"type:varchar(36);index" validate:"required"`
	Attachments []Attachment `json:"attachments" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Attachment is a file reference embedded in a task. The StorageID is the
// object-store key needed to delete the underlying file.
type Attachment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TaskID    string    `json:"-" gorm:"type:varchar(36);index"`
	URL       string    `json:"url"`
	StorageID string    `json:"publicId" gorm:"type:varchar(255)"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
}

package archive

import "time"

// Archive is one assistant conversation.
type Archive struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;index;not null" json:"user_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	IsDefault bool      `gorm:"column:is_default;not null;default:false" json:"is_default"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Archive) TableName() string { return "archives" }

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in an archive. Truncated marks an assistant answer
// whose stream failed midway.
type Message struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	ArchiveID string    `gorm:"column:archive_id;index;not null" json:"archive_id"`
	Role      Role      `gorm:"column:role;not null" json:"role"`
	Content   string    `gorm:"column:content;type:text" json:"content"`
	Truncated bool      `gorm:"column:truncated;not null;default:false" json:"truncated"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Message) TableName() string { return "archive_messages" }

// Models lists the tables owned by this package, for migrations.
func Models() []any {
	return []any{&Archive{}, &Message{}}
}

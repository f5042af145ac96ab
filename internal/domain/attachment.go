package domain

// AttachmentKind 附件粗分类
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentTextFile AttachmentKind = "text"
)

// KindForContentType 根据 MIME 类型推断附件分类。
func KindForContentType(contentType string) AttachmentKind {
	if len(contentType) >= 6 && contentType[:6] == "image/" {
		return AttachmentImage
	}
	return AttachmentTextFile
}

// Attachment 表示评论附件，一条评论最多一个附件。
//
// StoredName 是落盘后的不透明文件名（UUID + 原扩展名），与评论同事务写入，
// 评论不删除所以附件创建后即不可变。
type Attachment struct {
	ID          string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CommentID   string         `json:"commentId" gorm:"type:varchar(36);uniqueIndex;not null"`
	FileName    string         `json:"fileName" gorm:"type:varchar(255)"`
	StoredName  string         `json:"storedName" gorm:"type:varchar(255);uniqueIndex"`
	ContentType string         `json:"contentType" gorm:"type:varchar(100)"`
	Size        int64          `json:"size"`
	Kind        AttachmentKind `json:"kind" gorm:"type:varchar(16)"`
}

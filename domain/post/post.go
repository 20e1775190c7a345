package post

import "time"

type Post struct {
	UserId    string    `json:"userId" bson:"userId"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Likes     []string  `json:"likes" bson:"likes"`
	Ref       string    `json:"ref,omitempty" bson:"ref,omitempty"`
	Image     string    `json:"image,omitempty" bson:"image,omitempty"`
}

// NewPost is what a caller submits; Liked means the author likes their own post.
type NewPost struct {
	Content string `json:"content"`
	Liked   bool   `json:"liked"`
	Ref     string `json:"ref,omitempty"`
	Image   string `json:"image,omitempty"`
}

func (np NewPost) ToPost(userId string, timestamp time.Time) Post {
	likes := make([]string, 0, 1)
	if np.Liked {
		likes = append(likes, userId)
	}
	return Post{
		UserId:    userId,
		Content:   np.Content,
		Timestamp: timestamp,
		Likes:     likes,
		Ref:       np.Ref,
		Image:     np.Image,
	}
}

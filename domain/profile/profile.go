package profile

// Profile is the per-user document. Posts, Feed, Friends and FriendReq hold
// ids only and are only ever mutated through union/remove primitives.
type Profile struct {
	UserId    string   `json:"userId" bson:"userId"`
	Icon      string   `json:"icon" bson:"icon"`
	Name      string   `json:"name" bson:"name"`
	Desc      string   `json:"desc" bson:"desc"`
	Posts     []string `json:"posts" bson:"posts"`
	Friends   []string `json:"friends" bson:"friends"`
	Feed      []string `json:"feed" bson:"feed"`
	FriendReq []string `json:"friendReq" bson:"friendReq"`
}

// User is the public projection of a Profile, decoded straight from the
// profile document.
type User struct {
	UserId string `json:"userId" bson:"userId"`
	Name   string `json:"name" bson:"name"`
	Desc   string `json:"desc" bson:"desc"`
	Icon   string `json:"icon" bson:"icon"`
}

func New(userId, name, desc, icon string) Profile {
	return Profile{
		UserId:    userId,
		Icon:      icon,
		Name:      name,
		Desc:      desc,
		Posts:     []string{},
		Friends:   []string{},
		Feed:      []string{},
		FriendReq: []string{},
	}
}

func (p *Profile) HasFriend(userId string) bool {
	return contains(p.Friends, userId)
}

func (p *Profile) HasFriendRequest(userId string) bool {
	return contains(p.FriendReq, userId)
}

func contains(ids []string, id string) bool {
	for _, elem := range ids {
		if elem == id {
			return true
		}
	}
	return false
}

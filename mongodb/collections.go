package mongodb

const (
	UsersCollection       = "users"
	FormsCollection       = "forms"
	SubmissionsCollection = "submissions"
)

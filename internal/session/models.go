package session

// Keys under which the session is persisted.
const (
	TokenKey = "authToken"
	UserKey  = "authUser"
	TempKey  = "tempUserData"
)

// TempCredentials is the short-lived bundle kept between a login that asked
// for a one-time code and the matching verify call. The backend's verify
// endpoint needs the original credentials again, so the password is stored
// as entered.
type TempCredentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	RequiresMfa bool   `json:"requiresMfa"`
	Otp         string `json:"otp"`
}

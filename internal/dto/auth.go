package dto

// LoginRequest is the login form body
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token pair
type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Username     string `json:"username"`
}

// LoginFailure is the 401 body of a failed login
type LoginFailure struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RegisterRequest creates an account with its profile
type RegisterRequest struct {
	Username   string `json:"username" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=4"`
	Age        int    `json:"age" binding:"gte=0"`
	Height     int    `json:"height" binding:"gte=0"`
	Weight     int    `json:"weight" binding:"gte=0"`
	Habit      string `json:"habit"`
	Preference string `json:"preference"`
}

// RegisterResponse echoes the created account
type RegisterResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

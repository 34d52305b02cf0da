package dto

import "github.com/realqkqk123fr/temp-backend/internal/domain"

// MypageRequest replaces the caller's profile. An empty password keeps the
// current one.
type MypageRequest struct {
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password"`
	Age        int    `json:"age" binding:"gte=0"`
	Height     int    `json:"height" binding:"gte=0"`
	Weight     int    `json:"weight" binding:"gte=0"`
	Habit      string `json:"habit"`
	Preference string `json:"preference"`
}

// MypageResponse is the caller's profile. The password hash is never returned.
type MypageResponse struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Age        int    `json:"age"`
	Height     int    `json:"height"`
	Weight     int    `json:"weight"`
	Habit      string `json:"habit"`
	Preference string `json:"preference"`
}

// MypageFromDomain converts a user to its profile view
func MypageFromDomain(u *domain.User) *MypageResponse {
	return &MypageResponse{
		Username:   u.Username,
		Email:      u.Email,
		Age:        u.Age,
		Height:     u.Height,
		Weight:     u.Weight,
		Habit:      u.Habit,
		Preference: u.Preference,
	}
}

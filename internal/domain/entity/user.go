package entity

import "time"

type User struct {
	ID        string    `json:"id" firestore:"id"`
	Username  string    `json:"username" firestore:"username"`
	Email     string    `json:"email" firestore:"email"`
	Role      string    `json:"role" firestore:"role"` // "customer", "owner", "admin"
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
}

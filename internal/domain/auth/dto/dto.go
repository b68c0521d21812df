package dto

type SignUpDTO struct {
	Email    string `json:"email"    validate:"required,email,min=5,max=50"`
	Name     string `json:"name"     validate:"required,min=3,max=20"`
	Password string `json:"password" validate:"required,max=72"`
}

type SignInDTO struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshDTO and ValidateDTO are not validated: an empty token is simply an
// invalid one.
type RefreshDTO struct {
	Token string `json:"token"`
}

type ValidateDTO struct {
	AccessToken string `json:"access_token"`
}

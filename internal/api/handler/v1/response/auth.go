package response

import "github.com/bartime/bartime-api/internal/domain"

type LoginResponse struct {
	Token  string        `json:"token"`
	Member domain.Member `json:"member"`
}

type RegisterResponse struct {
	Association domain.Association `json:"association"`
	Member      domain.Member      `json:"member"`
	Token       string             `json:"token"`
}

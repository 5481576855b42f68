package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	gohttp "github.com/km-arc/go-swift/framework/http"
	"github.com/km-arc/go-swift/framework/routing"
)

// UserController exposes UserService over HTTP.
type UserController struct {
	users    *UserService
	validate *validator.Validate
}

func NewUserController(users *UserService) *UserController {
	return &UserController{users: users, validate: validator.New()}
}

type registerRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Store handles POST /users.
func (c *UserController) Store() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := gohttp.NewResponse(w)
		var body registerRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			res.Error(http.StatusBadRequest, "Malformed JSON body.")
			return
		}
		if err := c.validate.Struct(body); err != nil {
			res.ValidationError(err)
			return
		}
		if err := c.users.Register(r.Context(), body.Email); err != nil {
			if errors.Is(err, ErrUserExists) {
				res.Error(http.StatusConflict, "The email has already been taken.")
				return
			}
			res.ServerError()
			return
		}
		res.Created(map[string]any{"email": body.Email})
	}
}

// Show handles GET /users/{email}.
func (c *UserController) Show() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := gohttp.NewResponse(w)
		email := routing.Param(r, "email")
		if !c.users.Exists(email) {
			res.NotFound()
			return
		}
		res.Success(map[string]any{"email": email})
	}
}

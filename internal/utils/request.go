package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

func DecodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}

	err := json.NewDecoder(r.Body).Decode(dest)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}

		return fmt.Errorf("invalid request body: %w", err)
	}

	return nil
}

func ValidateStruct(validate *validator.Validate, dest any) error {
	if err := validate.Struct(dest); err != nil {
		return err
	}

	return nil
}

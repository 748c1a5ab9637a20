package httpapi

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleDoctor, RolePatient:
		return true
	}
	return false
}

type Claims struct {
	jwt.RegisteredClaims
	Role      Role   `json:"role"`
	DoctorID  string `json:"doctor_id,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
}

// Principal is the authenticated caller attached to the echo context.
type Principal struct {
	Subject   string
	Role      Role
	DoctorID  uuid.UUID
	PatientID uuid.UUID
}

const principalKey = "principal"

type AuthConfig struct {
	SigningKey []byte
	// Disabled treats every request as an admin. Development only.
	Disabled bool
}

func Authenticate(cfg AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Disabled {
				c.Set(principalKey, Principal{Subject: "dev-user", Role: RoleAdmin})
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(*jwt.Token) (any, error) {
				return cfg.SigningKey, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			p, err := principalFromClaims(claims)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			c.Set(principalKey, p)
			return next(c)
		}
	}
}

func principalFromClaims(claims *Claims) (Principal, error) {
	p := Principal{Subject: claims.Subject, Role: Role(strings.ToLower(string(claims.Role)))}
	if !p.Role.valid() {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}
	var err error
	if claims.DoctorID != "" {
		if p.DoctorID, err = uuid.Parse(claims.DoctorID); err != nil {
			return Principal{}, err
		}
	}
	if claims.PatientID != "" {
		if p.PatientID, err = uuid.Parse(claims.PatientID); err != nil {
			return Principal{}, err
		}
	}
	return p, nil
}

func principalFrom(c echo.Context) Principal {
	p, _ := c.Get(principalKey).(Principal)
	return p
}

func (p Principal) privileged() bool {
	return p.Role == RoleAdmin || p.Role == RoleStaff
}

func (p Principal) ownsDoctor(id uuid.UUID) bool {
	return p.Role == RoleDoctor && p.DoctorID != uuid.Nil && p.DoctorID == id
}

func (p Principal) ownsPatient(id uuid.UUID) bool {
	return p.Role == RolePatient && p.PatientID != uuid.Nil && p.PatientID == id
}

// canActOn reports whether p may read or change a booking between doctorID
// and patientID.
func (p Principal) canActOn(doctorID, patientID uuid.UUID) bool {
	return p.privileged() || p.ownsDoctor(doctorID) || p.ownsPatient(patientID)
}

// canManageDoctor reports whether p may change doctorID's calendar setup.
func (p Principal) canManageDoctor(doctorID uuid.UUID) bool {
	return p.privileged() || p.ownsDoctor(doctorID)
}

func errForbidden() error {
	return echo.NewHTTPError(http.StatusForbidden, "forbidden")
}

package shop

import "errors"

var (
	ErrNotFound           = errors.New("item not found")
	ErrNoMember           = errors.New("finish onboarding before using the shop")
	ErrInsufficientPoints = errors.New("not enough points")
	ErrAlreadyOwned       = errors.New("item already owned")
	ErrNotEquippable      = errors.New("only cosmetic items can be equipped")
	ErrNotConsumable      = errors.New("cosmetic items cannot be used")
	ErrBuffActive         = errors.New("double points is already active")
	ErrEffectActive       = errors.New("visual effect already active")
	ErrJokerNeedsTask     = errors.New("joker needs one of your incomplete tasks")
	ErrInvalidItem        = errors.New("invalid shop item")
)

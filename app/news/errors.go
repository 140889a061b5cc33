package news

import "errors"

var (
	ErrInvalidCap    = errors.New("cap must be greater than zero")
	ErrInvalidParams = errors.New("invalid pipeline parameters")
	ErrUnscoredItem  = errors.New("item has not been scored")
)

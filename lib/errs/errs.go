package errs

import "errors"

var ErrNotFound = errors.New("not found")

var ErrAlreadyExists = errors.New("already exists")

var ErrInternal = errors.New("internal error")

var ErrInvalidInput = errors.New("invalid input")

var ErrInvalidCredentials = errors.New("invalid username or password")

var ErrInvalidToken = errors.New("invalid token")

var ErrUnknownSymbol = errors.New("unknown stock symbol")

var ErrInsufficientFunds = errors.New("insufficient funds")

var ErrInsufficientShares = errors.New("insufficient shares")

var ErrQuoteProvider = errors.New("quote provider failure")

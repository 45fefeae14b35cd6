package logger

import (
	"go.uber.org/zap"
)

// New builds the service logger. Development mode gets the human-readable
// console encoder, everything else the production JSON encoder.
func New(dev bool) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

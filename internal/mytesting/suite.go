package mytesting

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/suite"
)

type Suite struct {
	suite.Suite
	context.Context

	Cancel context.CancelFunc
}

func (s *Suite) SetupTest() {
	if _, err := os.Stat(".env.test"); err == nil {
		s.Require().NoError(godotenv.Load(".env.test"))
	}

	s.Context, s.Cancel = context.WithCancel(context.TODO())
}

func (s *Suite) TearDownTest() {
	if s.Cancel != nil {
		s.Cancel()
	}
}

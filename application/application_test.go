package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ApplicationSuite struct {
	suite.Suite
}

func (s *ApplicationSuite) SetupTest() {
	os.Unsetenv("PORT")
	os.Unsetenv("INTERVIEWER_CONFIG_FILE_PATH")
}

func (s *ApplicationSuite) TestDefaults() {
	a := New()
	cfg, err := a.loadConfig()
	s.Require().NoError(err)
	a.cfg = cfg

	srvCfg, err := a.serverConfig()
	s.Require().NoError(err)
	s.Equal(defaultPort, srvCfg.Port)
	s.Equal("", srvCfg.Bind)
	s.Equal(0, srvCfg.MetricsPort)
}

func (s *ApplicationSuite) TestPortEnvOverride() {
	s.T().Setenv("PORT", "8080")

	a := New()
	cfg, err := a.loadConfig()
	s.Require().NoError(err)
	a.cfg = cfg

	srvCfg, err := a.serverConfig()
	s.Require().NoError(err)
	s.Equal(8080, srvCfg.Port)
}

func (s *ApplicationSuite) TestInvalidPortEnv() {
	s.T().Setenv("PORT", "not-a-number")

	a := New()
	cfg, err := a.loadConfig()
	s.Require().NoError(err)
	a.cfg = cfg

	_, err = a.serverConfig()
	s.Error(err)
}

func (s *ApplicationSuite) TestConfigFile() {
	dir := s.T().TempDir()
	path := filepath.Join(dir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(
		"server:\n  port: 9000\n  bind: 127.0.0.1\n  metrics-port: 9100\n",
	), 0o600))
	s.T().Setenv("INTERVIEWER_CONFIG_FILE_PATH", path)

	a := New()
	cfg, err := a.loadConfig()
	s.Require().NoError(err)
	a.cfg = cfg

	srvCfg, err := a.serverConfig()
	s.Require().NoError(err)
	s.Equal(9000, srvCfg.Port)
	s.Equal("127.0.0.1", srvCfg.Bind)
	s.Equal(9100, srvCfg.MetricsPort)
}

func (s *ApplicationSuite) TestMissingExplicitConfig() {
	s.T().Setenv("INTERVIEWER_CONFIG_FILE_PATH", "/does/not/exist.yaml")

	a := New()
	_, err := a.loadConfig()
	s.Error(err)
}

func TestApplication(t *testing.T) {
	suite.Run(t, new(ApplicationSuite))
}

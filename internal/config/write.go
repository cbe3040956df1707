package config

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// WriteDefaults writes a configuration file holding every default value.
func WriteDefaults(w io.Writer) error {
	v := viper.New()
	SetDefaults(v)
	data, err := toml.Marshal(v.AllSettings())
	if err != nil {
		return errors.Wrap(err, "marshal defaults")
	}
	_, err = w.Write(data)
	return err
}

// CreateDefaultFile writes the defaults to path. An existing file is kept
// unless overwrite is set.
func CreateDefaultFile(path string, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return errors.WithHint(errors.Newf("%s already exists", path), "pass --force to overwrite it")
		}
		return errors.Wrapf(err, "create %s", path)
	}
	if err := WriteDefaults(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

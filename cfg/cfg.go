// SPDX-License-Identifier: ice License 1.0

package cfg

import (
	"log"
	"reflect"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultYAMLConfigurationFilePath = "/etc/pushgate/pushgate.yaml"
	modulePrefix                     = "github.com/ice-blockchain/pushgate/"
)

var (
	yamlConfigurationFilePathInitializer = new(sync.Once)
	yamlConfigurationFilePath            string
)

func MustInit(absoluteCfgPaths ...string) {
	yamlConfigurationFilePathInitializer.Do(func() { mustInit(absoluteCfgPaths...) })
}

func mustInit(absoluteCfgPaths ...string) {
	yamlConfigurationFilePath = ""
	for _, path := range absoluteCfgPaths {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err == nil {
			yamlConfigurationFilePath = path

			break
		}
	}
	if yamlConfigurationFilePath == "" {
		if len(absoluteCfgPaths) > 0 {
			log.Printf("WARN: could not find any of the provided file paths %+v, defaulting to `%v`", absoluteCfgPaths, defaultYAMLConfigurationFilePath)
		}
		yamlConfigurationFilePath = defaultYAMLConfigurationFilePath
		viper.SetConfigFile(yamlConfigurationFilePath)
		if err := viper.ReadInConfig(); err != nil {
			log.Printf("WARN: %v", errors.Wrapf(err, "could not read `%v`, only defaults and flags apply", yamlConfigurationFilePath))
		}
	}
}

// MustGet decodes the yaml section named after T's package path (relative to the module) into a new T.
func MustGet[T any]() *T {
	var t T
	key := Key[T]()
	if err := viper.UnmarshalKey(key, &t, decoderConfig); err != nil {
		log.Panic(errors.Wrapf(err, "could not deserialised `%v` yaml key `%v` into %+v", yamlConfigurationFilePath, key, t))
	}

	return &t
}

func Key[T any]() string {
	var t T

	return strings.Replace(reflect.TypeOf(t).PkgPath(), modulePrefix, "", 1)
}

// Watch calls onChange every time the configuration file is rewritten, after viper reloaded it.
func Watch(onChange func()) {
	viper.OnConfigChange(func(event fsnotify.Event) {
		configChanged(event, onChange)
	})
	viper.WatchConfig()
}

func configChanged(event fsnotify.Event, onChange func()) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	log.Printf("INFO: configuration `%v` changed (%v), reloading", event.Name, event.Op)
	onChange()

	return true
}

func decoderConfig(dc *mapstructure.DecoderConfig) {
	dc.TagName = "yaml"
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

package catalog

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/charmbracelet/log"

	"storybook/pkg/schema"
	"storybook/pkg/utils"
)

//go:embed data
var embedded embed.FS

// ConfigProvider loads the static tables once at startup.
type ConfigProvider interface {
	Load() (*Catalog, error)
}

// FSProvider reads age_levels.json and themes/*.json from an fs.FS.
type FSProvider struct {
	FS fs.FS
}

// Embedded returns a provider over the tables compiled into the binary.
func Embedded() FSProvider {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		panic(err)
	}
	return FSProvider{FS: sub}
}

// Dir returns a provider reading tables from a directory on disk.
func Dir(dir string) FSProvider {
	return FSProvider{FS: os.DirFS(dir)}
}

func (p FSProvider) Load() (*Catalog, error) {
	ages, err := utils.Load[ageFile](p.FS, "age_levels.json")
	if err != nil {
		return nil, schema.ErrCatalogInvalid.Withf("age levels: %v", err).Wrap(err)
	}
	files, err := utils.LoadAll[themeFile](p.FS, "themes/*.json")
	if err != nil {
		return nil, schema.ErrCatalogInvalid.Withf("themes: %v", err).Wrap(err)
	}
	if len(files) == 0 {
		return nil, schema.ErrCatalogInvalid.Withf("no themes found")
	}

	c := &Catalog{
		ages:   make(map[schema.AgeLevel]schema.AgeRules, len(ages.Levels)),
		themes: make(map[string]*theme, len(files)),
	}
	if err := c.loadAges(ages); err != nil {
		return nil, err
	}
	for name, tf := range files {
		id := strings.TrimSuffix(path.Base(name), path.Ext(name))
		if tf.ID == "" {
			tf.ID = id
		}
		t, err := compileTheme(tf)
		if err != nil {
			return nil, schema.ErrCatalogInvalid.Withf("%s: %v", name, err).Wrap(err)
		}
		if _, dup := c.themes[t.info.ID]; dup {
			return nil, schema.ErrCatalogInvalid.Withf("%s: duplicate theme id %q", name, t.info.ID)
		}
		c.themes[t.info.ID] = t
		c.order = append(c.order, t.info.ID)
	}
	c.sortThemes()

	log.Info("catalog loaded", "themes", len(c.themes), "age_levels", len(c.ages))
	return c, nil
}

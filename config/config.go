// Package config loads adapter search catalogs from YAML with
// github.com/spf13/viper, so an operator can teach the search
// sequence about a new STN/ELM clone's quirks without recompiling.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"obdcore/adapter"
	"obdcore/busproto"
	"obdcore/errs"
	"obdcore/frame"
)

// candidateEntry mirrors one item of a search catalog's YAML list.
// Each field carries an explicit mapstructure tag naming its YAML key.
type candidateEntry struct {
	Protocol string `mapstructure:"protocol"`
	Header   uint32 `mapstructure:"header"`
	Bytes    []byte `mapstructure:"bytes"`
}

type searchCatalogFile struct {
	Candidates []candidateEntry `mapstructure:"candidates"`
}

// LoadSearchCatalog reads a YAML file at path shaped like:
//
//	candidates:
//	  - protocol: can_11B_500K
//	    header: 2016        # 0x7E0, decimal because YAML hex literals vary by parser
//	    bytes: [1, 0]
//	  - protocol: iso9141_2
//	    bytes: [1, 0]
//
// and returns the equivalent []adapter.Candidate, in file order, for
// Adapter.Search to probe. header may be omitted (defaults to 0,
// meaning "use the protocol's BroadcastHeader").
func LoadSearchCatalog(path string) ([]adapter.Candidate, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errs.Wrap(errs.KindInvalidFormat, err, fmt.Sprintf("read search catalog %s", path))
	}

	var file searchCatalogFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, errs.Wrap(errs.KindInvalidFormat, err, "decode search catalog")
	}

	candidates := make([]adapter.Candidate, 0, len(file.Candidates))
	for i, entry := range file.Candidates {
		protocol, ok := busproto.Parse(entry.Protocol)
		if !ok {
			return nil, errs.New(errs.KindInvalidFormat, fmt.Sprintf("search catalog entry %d: unknown protocol %q", i, entry.Protocol))
		}

		candidates = append(candidates, adapter.Candidate{
			Protocol: protocol,
			Test: adapter.TestMessage{
				Header: frame.Header(entry.Header),
				Bytes:  append([]byte(nil), entry.Bytes...),
			},
		})
	}

	return candidates, nil
}

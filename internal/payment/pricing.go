package payment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPricingTable reads a pricing table YAML file (spec.md §6: "pricing
// table file path (YAML: operationId: [{chain_id, token_address,
// token_amount}, ...])"). A missing path returns an empty table rather than
// an error, since an unpriced deployment is valid (payment mode "off").
func LoadPricingTable(path string) (PricingTable, error) {
	if path == "" {
		return PricingTable{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PricingTable{}, nil
		}
		return nil, fmt.Errorf("read pricing table %q: %w", path, err)
	}
	var table PricingTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse pricing table %q: %w", path, err)
	}
	if table == nil {
		table = PricingTable{}
	}
	return table, nil
}

package web_scanner

import (
	"fmt"
	"github.com/hashicorp/go-version"
)

// affected describes the vulnerable versions of a product.
type affected struct {
	product     string
	constraints version.Constraints
}

func mustAffected(product, constraint string) affected {
	c, err := version.NewConstraint(constraint)
	if err != nil {
		panic(fmt.Sprintf("invalid constraint %q: %v", constraint, err))
	}
	return affected{product: product, constraints: c}
}

// Contains reports whether raw falls into the affected range. Versions are
// compared segment by segment, so 8.1.9 sorts before 8.1.28.
func (a affected) Contains(raw string) (bool, error) {
	v, err := version.NewVersion(raw)
	if err != nil {
		return false, err
	}
	return a.constraints.Check(v), nil
}

func (a affected) String() string {
	return fmt.Sprintf("%s %s", a.product, a.constraints)
}

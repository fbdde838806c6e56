package diff

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-version"
)

var buildSuffix = regexp.MustCompile(`_b\d+$`)

// VersionCompare orders two appliance firmware versions. It returns 0 when
// they are equivalent, a positive number when a is newer and a negative
// number when b is newer. "_bNNN" build suffixes, trailing ".0" segments and
// leading zeros are ignored, so "1.01.1" == "1.1.1" and "1.0" == "1".
func VersionCompare(a, b string) (int, error) {
	va, err := version.NewVersion(buildSuffix.ReplaceAllString(a, ""))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", a, err)
	}
	vb, err := version.NewVersion(buildSuffix.ReplaceAllString(b, ""))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", b, err)
	}
	return va.Compare(vb), nil
}

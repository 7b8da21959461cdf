package sane

import "fmt"

// Version is a packed library version code.
type Version int32

// LibVersion is the version of the C header this package implements.
var LibVersion = NewVersion(1, 0, 0)

// NewVersion packs major, minor and build.
func NewVersion(major, minor uint8, build uint16) Version {
	return Version(int32(major)<<24 | int32(minor)<<16 | int32(build))
}

// Major returns code >> 24.
func (v Version) Major() uint8 { return uint8(uint32(v) >> 24) }

// Minor returns (code >> 16) & 0xff.
func (v Version) Minor() uint8 { return uint8(uint32(v) >> 16) }

// Build returns code & 0xffff.
func (v Version) Build() uint16 { return uint16(uint32(v)) }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Build())
}

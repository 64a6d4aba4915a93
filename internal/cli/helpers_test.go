package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const validDoc = `
package test

dof: X: {group: "position"}
dof: Y: {group: "position"}
compartment: c0: {index: 0}
csi: main: {allow: ["X", "Y"]}
diagram: d1: {compartment: "c0", expr: "C(P(X), P(Y))"}
state: s1: {diagram: "d1", csi: "main", compartment: "c0"}
rule: swap: {pattern: "C($a, $b)", replacement: "C($b, $a)"}
rule: wrap: {pattern: "T($a)", replacement: "T($a)"}
`

const noRulesDoc = `
package test

dof: X: {group: "position"}
compartment: c0: {index: 0}
csi: main: {allow: ["X"]}
diagram: d1: {compartment: "c0", expr: "P(X)"}
state: s1: {diagram: "d1", csi: "main", compartment: "c0"}
`

// brokenRefDoc compiles but fails structural validation: the state
// names a diagram that does not exist.
const brokenRefDoc = `
package test

dof: X: {group: "position"}
compartment: c0: {index: 0}
csi: main: {allow: ["X"]}
diagram: d1: {compartment: "c0", expr: "P(X)"}
state: s1: {diagram: "ghost", csi: "main", compartment: "c0"}
`

func writePackageDir(t *testing.T, doc string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "pkg.cue"), []byte(doc), 0o644)
	require.NoError(t, err)
	return dir
}

func execCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

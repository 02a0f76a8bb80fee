// Package assetapply commits reviewed library matches to a generated script.
//
// Every entity whose match is marked for reuse gets a fresh ID and the
// library's visual data, and every shot is rewired through the resulting ID
// tables. The output also carries one sync reference per library entry so
// the caller can detect later library edits.
package assetapply

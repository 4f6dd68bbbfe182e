// Command infer_sectlabel restores a trained section-label checkpoint and
// scores the test split. It prints the per-class precision/recall/f-score
// table, optionally the confusion matrix, and can list the sentences behind
// any cell of it.
//
// Usage:
//
//	infer_sectlabel -save-dir output -confusion
//	infer_sectlabel -save-dir output -true title -pred author
package main

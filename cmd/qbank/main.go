// Package main provides the qbank command line tool.
//
// qbank turns exam papers (PDF, DOCX or text) into a bank of four-option
// multiple-choice questions and exports them as CSV or XLSX.
//
// Usage:
//
//	qbank extract papers/ --out questions.csv
//	qbank import bank.xlsx
//	qbank search "projectile motion"
//
// See --help for all available options.
package main

func main() {
	Execute()
}

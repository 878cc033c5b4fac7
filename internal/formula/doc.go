// Package formula compiles correction formulas into fast numeric closures.
//
// The grammar is the restricted arithmetic subset found in JEC text files
// and b-tag calibration CSVs:
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('*' | '/') unary)*
//	unary   := ('-' | '+') unary | power
//	power   := primary ('^' unary)?
//	primary := number | name | '[' int ']' | name '(' expr (',' expr)* ')' | '(' expr ')'
//
// Names resolve, in order, to a declared parameter, an independent variable
// (x, y, z, t) or a function. Functions may carry a ROOT "TMath::" prefix.
// "^" is right associative and binds tighter than unary minus, so -x^2 is
// -(x^2).
//
// Evaluation never fails: division by zero and domain errors produce IEEE
// Inf or NaN. Clamps written in the text (e.g. max(0.0001, ...)) are the
// only protection and are honored literally.
package formula

//go:build !ligamentdebug

package ligament

const debugContracts = false

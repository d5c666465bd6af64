//go:build ligamentdebug

package ligament

// panic on contract violations instead of truncating
const debugContracts = true

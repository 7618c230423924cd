package resolver

// nativePackages maps an import name to the package loaded through the
// runtime's own package repository.
var nativePackages = map[string]string{
	"numpy":      "numpy",
	"np":         "numpy",
	"pandas":     "pandas",
	"pd":         "pandas",
	"matplotlib": "matplotlib",
	"plt":        "matplotlib",
	"scipy":      "scipy",
	"sklearn":    "scikit-learn",
	"requests":   "requests",
	"sympy":      "sympy",
	"networkx":   "networkx",
	"pillow":     "pillow",
	"PIL":        "pillow",
	"bs4":        "beautifulsoup4",
	"lxml":       "lxml",
}

// secondaryPackages maps an import name to a package that is only
// available from the package index.
var secondaryPackages = map[string]string{
	"docx":     "python-docx",
	"Document": "python-docx",
}

// NativePackage returns the native-channel package for an import name.
func NativePackage(name string) (string, bool) {
	pkg, ok := nativePackages[name]
	return pkg, ok
}

// SecondaryPackage returns the secondary-channel package for an import name.
func SecondaryPackage(name string) (string, bool) {
	pkg, ok := secondaryPackages[name]
	return pkg, ok
}

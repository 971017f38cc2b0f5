// Package archive reads and writes plugin archives.
//
// # Overview
//
// A plugin archive is a zip file whose entries are type descriptors and
// arbitrary resources. Entries are visited in archive order (central directory
// order), which is the order the plugin units report their discovered types in.
//
// # Reading
//
//	r, err := archive.Open("/plugins/greeters.zip")
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//
//	err = r.Walk(func(e archive.Entry) error {
//		fmt.Println(e.Name, e.Size)
//		return nil
//	})
//
// # Writing
//
//	w := archive.NewWriter(f)
//	w.Add("com/example/Greeter.type.yaml", data)
//	err := w.Close()
//
// # Related Packages
//
//   - pkg/loader: Resolves type names to archive entries
//   - pkg/plugins: Scans archives for candidate types
package archive

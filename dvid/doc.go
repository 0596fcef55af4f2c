/*
	Package dvid provides types, constants, and functions that have no other dependencies
	and can be used by all packages within planerender.  This includes pixel types, plane
	geometry, the error kinds returned by rendering, serialization of stored data, and
	logging.
*/
package dvid

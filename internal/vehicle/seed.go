package vehicle

// SampleCatalog seeds an empty catalog.
var SampleCatalog = []Specs{
	{"Ford Mustang GT", 5038, "Petrol", 1750, 0.32},
	{"Honda CR-V 2.0i", 1996, "Petrol", 1530, 0.28},
	{"Honda Civic Type R", 1996, "Petrol", 1429, 0.28},
	{"Honda Fit RS", 1496, "Petrol", 1050, 0.32},
	{"Mazda Demio 1.5", 1496, "Petrol", 1050, 0.31},
	{"Mercedes C200", 1497, "Petrol", 1505, 0.26},
	{"Mercedes-Benz E-Class", 2499, "Petrol", 1680, 0.22},
	{"Mitsubishi Lancer EX", 1998, "Petrol", 1310, 0.32},
	{"Nissan GT-R", 3799, "Petrol", 1750, 0.30},
	{"Nissan Note", 1198, "Petrol", 1050, 0.28},
	{"Subaru Forester XT", 1998, "Petrol", 1610, 0.33},
	{"Subaru Impreza 2.0i", 1995, "Petrol", 1330, 0.29},
	{"Subaru Outback SX", 2499, "Petrol", 1610, 0.33},
	{"Subaru WRX STi", 2499, "Petrol", 1610, 0.31},
	{"Toyota Corolla E210", 1798, "Petrol", 1300, 0.29},
	{"Toyota Mark X", 2499, "Petrol", 1550, 0.29},
	{"Volkswagen Golf GTI", 1984, "Petrol", 1478, 0.35},
	{"Volkswagen Golf R", 1984, "Petrol", 1483, 0.35},
	{"Volkswagen Jetta GLI", 1984, "Petrol", 1483, 0.31},
	{"Volkswagen Passat", 1984, "Petrol", 1483, 0.34},
}
